package draft

// DefaultSequence is the standard conquest draft order: six alternating
// bans up front, then snake-order picks, 3 bans and 5 picks per side.
var DefaultSequence = []TurnSpec{
	// Bans
	{Side: SideOrder, Kind: KindBan},
	{Side: SideChaos, Kind: KindBan},
	{Side: SideOrder, Kind: KindBan},
	{Side: SideChaos, Kind: KindBan},
	{Side: SideOrder, Kind: KindBan},
	{Side: SideChaos, Kind: KindBan},
	// Picks
	{Side: SideOrder, Kind: KindPick},
	{Side: SideChaos, Kind: KindPick},
	{Side: SideChaos, Kind: KindPick},
	{Side: SideOrder, Kind: KindPick},
	{Side: SideOrder, Kind: KindPick},
	{Side: SideChaos, Kind: KindPick},
	{Side: SideChaos, Kind: KindPick},
	{Side: SideOrder, Kind: KindPick},
	{Side: SideOrder, Kind: KindPick},
	{Side: SideChaos, Kind: KindPick},
}
