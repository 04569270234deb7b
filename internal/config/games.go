package config

// GameDefinition describes one supported HoYoverse title: the daily
// check-in endpoints and act_id for its sign-in event, plus the
// presentation metadata used when building the Discord report embed.
// The endpoint URLs carry no query string; callers append act_id.
type GameDefinition struct {
	Biz        string
	Name       string
	ActID      string
	InfoURL    string
	RewardURL  string
	SignURL    string
	Suffix     string
	Title      string
	Color      string
	AuthorName string
	AuthorURL  string
	AuthorIcon string
}

const (
	genshinActID  = "e202102251931481"
	honkaiActID   = "e202110291205111"
	starrailActID = "e202303301540311"
	themisActID   = "e202202281857121"
)

var Games = []GameDefinition{
	{
		Biz:        "hk4e_global",
		Name:       "Genshin Impact",
		ActID:      genshinActID,
		InfoURL:    "https://sg-hk4e-api.hoyolab.com/event/sol/info",
		RewardURL:  "https://sg-hk4e-api.hoyolab.com/event/sol/home",
		SignURL:    "https://sg-hk4e-api.hoyolab.com/event/sol/sign",
		Suffix:     "Traveller",
		Title:      "Genshin Impact Daily Login",
		Color:      "E86D82",
		AuthorName: "Paimon",
		AuthorURL:  "https://genshin.hoyoverse.com",
		AuthorIcon: "https://img-os-static.hoyolab.com/communityWeb/upload/1d7dd8f33c5ccdfdeac86e1e86ddd652.png",
	},
	{
		Biz:        "hkrpg_global",
		Name:       "Honkai: Star Rail",
		ActID:      starrailActID,
		InfoURL:    "https://sg-public-api.hoyolab.com/event/luna/os/info",
		RewardURL:  "https://sg-public-api.hoyolab.com/event/luna/os/home",
		SignURL:    "https://sg-public-api.hoyolab.com/event/luna/os/sign",
		Suffix:     "Trailblazer",
		Title:      "Honkai Star Rail Daily Login",
		Color:      "E0D463",
		AuthorName: "March 7th",
		AuthorURL:  "https://hsr.hoyoverse.com/en-us/",
		AuthorIcon: "https://img-os-static.hoyolab.com/communityWeb/upload/473afd1250b71ba470744aa240f6d638.png",
	},
	{
		Biz:        "bh3_global",
		Name:       "Honkai Impact 3",
		ActID:      honkaiActID,
		InfoURL:    "https://sg-public-api.hoyolab.com/event/mani/info",
		RewardURL:  "https://sg-public-api.hoyolab.com/event/mani/home",
		SignURL:    "https://sg-public-api.hoyolab.com/event/mani/sign",
		Suffix:     "Captain",
		Title:      "Honkai Impact 3rd Daily Login",
		Color:      "A385DE",
		AuthorName: "Ai-chan",
		AuthorURL:  "https://honkaiimpact3.hoyoverse.com/global/en-us",
		AuthorIcon: "https://img-os-static.hoyolab.com/communityWeb/upload/bbb364aaa7d51d168c96aaa6a1939cba.png",
	},
	{
		Biz:        "nxx_global",
		Name:       "Tears of Themis",
		ActID:      themisActID,
		InfoURL:    "https://sg-public-api.hoyolab.com/event/luna/os/info",
		RewardURL:  "https://sg-public-api.hoyolab.com/event/luna/home",
		SignURL:    "https://sg-public-api.hoyolab.com/event/luna/sign",
		Suffix:     "Detective",
		Title:      "Tears of Themis Daily Login",
		Color:      "86EAC1",
		AuthorName: "Luke Pearce",
		AuthorURL:  "https://tot.hoyoverse.com/en-us/",
		AuthorIcon: "https://img-os-static.hoyolab.com/communityWeb/upload/e500ff6fef5d44fa38db2ba52f34b771.png",
	},
}

// DefinitionOf looks up a game by its game_biz identifier. A missing
// entry means the game is unsupported and should be skipped.
func DefinitionOf(biz string) (GameDefinition, bool) {
	for _, g := range Games {
		if g.Biz == biz {
			return g, true
		}
	}
	return GameDefinition{}, false
}
