package catalog

var defaultFields = []Field{
	{Name: "goals", Kind: KindInteger, Min: 0, Max: 15, Aliases: []string{"gls", "goal"}, Critical: true},
	{Name: "assists", Kind: KindInteger, Min: 0, Max: 15, Aliases: []string{"ast", "assist"}, Critical: true},
	{Name: "rating", Kind: KindNumber, Min: 0, Max: 10, Aliases: []string{"match rating", "rtg", "player rating"}, Critical: true},
	{Name: "saves", Kind: KindInteger, Min: 0, Max: 30, Aliases: []string{"sv", "save"}, Critical: true},
	{Name: "shots", Kind: KindInteger, Min: 0, Max: 40, Aliases: []string{"sh", "total shots"}},
	{Name: "shots_on_target", Kind: KindInteger, Min: 0, Max: 40, Aliases: []string{"sot", "on target"}},
	{Name: "passes", Kind: KindInteger, Min: 0, Max: 200, Aliases: []string{"pas", "passes completed"}},
	{Name: "pass_accuracy", Kind: KindPercent, Min: 0, Max: 1, Aliases: []string{"passing accuracy", "pass acc", "pass %"}},
	{Name: "tackles", Kind: KindInteger, Min: 0, Max: 30, Aliases: []string{"tkl", "tackles won"}},
	{Name: "interceptions", Kind: KindInteger, Min: 0, Max: 30, Aliases: []string{"int", "intercepts"}},
	{Name: "minutes", Kind: KindInteger, Min: 0, Max: 130, Aliases: []string{"min", "mins", "minutes played"}},
	{Name: "clean_sheet", Kind: KindBoolean, Aliases: []string{"cs"}},
	{Name: "motm", Kind: KindBoolean, Aliases: []string{"man of the match", "player of the match", "potm"}},
	{Name: "yellow_cards", Kind: KindInteger, Min: 0, Max: 2, Aliases: []string{"yellow", "yellows", "yc"}},
	{Name: "red_cards", Kind: KindInteger, Min: 0, Max: 1, Aliases: []string{"red", "reds", "rc"}},
	{Name: "xg", Kind: KindNumber, Min: 0, Max: 10, Aliases: []string{"expected goals"}},
	{Name: "dribbles", Kind: KindInteger, Min: 0, Max: 40, Aliases: []string{"successful dribbles", "drb"}},
	{Name: "fouls", Kind: KindInteger, Min: 0, Max: 20, Aliases: []string{"fouls committed", "fls"}},
}

// Default returns the built-in football catalog.
func Default() *Catalog { return MustNew(defaultFields) }
