package tabletop

type Variant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CatalogGame describes a game the platform can host.
type CatalogGame struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MinPlayers  int       `json:"minPlayers"`
	MaxPlayers  int       `json:"maxPlayers"`
	Variants    []Variant `json:"variants"`
	Tags        []string  `json:"tags"`
}

// Catalog is the built-in game list.
var Catalog = []CatalogGame{
	{
		ID:          "amazons",
		Name:        "Amazons",
		Description: "Move a queen, then shoot an arrow to block a square. The last player able to move wins.",
		MinPlayers:  2,
		MaxPlayers:  2,
		Variants: []Variant{
			{ID: "board-8", Name: "8x8 board", Description: "Smaller board with three queens each."},
		},
		Tags: []string{"territory", "perfect-information"},
	},
	{
		ID:          "cannon",
		Name:        "Cannon",
		Description: "Soldiers advance and form cannons; capture the enemy town to win.",
		MinPlayers:  2,
		MaxPlayers:  2,
		Tags:        []string{"capture", "perfect-information"},
	},
	{
		ID:          "entropy",
		Name:        "Entropy",
		Description: "Chaos places coloured pieces, Order slides them to build palindromes. Roles swap each round.",
		MinPlayers:  2,
		MaxPlayers:  2,
		Variants: []Variant{
			{ID: "mini", Name: "Mini", Description: "5x5 board."},
		},
		Tags: []string{"pattern", "random"},
	},
	{
		ID:          "homeworlds",
		Name:        "Homeworlds",
		Description: "Space conflict with a shared bank of pyramids. Destroy or abandon the enemy homeworld.",
		MinPlayers:  2,
		MaxPlayers:  4,
		Tags:        []string{"economy", "perfect-information"},
	},
	{
		ID:          "volcano",
		Name:        "Volcano",
		Description: "Erupt caps across the board and collect the largest monochrome trios.",
		MinPlayers:  2,
		MaxPlayers:  5,
		Tags:        []string{"pattern", "capture"},
	},
}

// HasVariant reports whether id names one of the game's variants.
func (g CatalogGame) HasVariant(id string) bool {
	for _, v := range g.Variants {
		if v.ID == id {
			return true
		}
	}
	return false
}
