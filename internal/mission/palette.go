package mission

import "github.com/cespare/xxhash/v2"

var palette = []string{
	"aqua", "blue", "blueviolet", "brown", "cadetblue", "chartreuse",
	"chocolate", "coral", "cornflowerblue", "crimson", "darkcyan", "darkgoldenrod",
	"darkgreen", "darkmagenta", "darkorange", "darkorchid", "darkturquoise", "deeppink",
	"deepskyblue", "dodgerblue", "firebrick", "forestgreen", "fuchsia", "gold",
	"goldenrod", "green", "hotpink", "indianred", "indigo", "lawngreen",
	"lightseagreen", "limegreen", "magenta", "mediumorchid", "mediumpurple", "mediumseagreen",
	"mediumvioletred", "navy", "olive", "orange", "orangered", "orchid",
	"purple", "red", "royalblue", "seagreen", "sienna", "slateblue",
	"springgreen", "steelblue", "teal", "tomato", "turquoise", "yellowgreen",
}

// ColorFor retorna a cor de exibição do drone, estável entre execuções
func ColorFor(name string) string {
	return palette[xxhash.Sum64String(name)%uint64(len(palette))]
}
