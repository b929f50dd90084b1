package replay

// Replay channel names for book and trade data.
const (
	ChannelBook   = "depth"
	ChannelTrades = "trades"
)

// Channel is one (channel, market) subscription.
type Channel struct {
	Name   string
	Market string
}

// Filter is the replay service's channel filter entry.
type Filter struct {
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols"`
}

// BuildFilters groups channels by name.
// Groups keep the first-seen order of channel names and symbols keep the
// order they were supplied in.
func BuildFilters(channels []Channel) []Filter {
	filters := make([]Filter, 0, len(channels))
	index := make(map[string]int, len(channels))

	for _, ch := range channels {
		i, ok := index[ch.Name]
		if !ok {
			i = len(filters)
			index[ch.Name] = i
			filters = append(filters, Filter{Channel: ch.Name})
		}
		filters[i].Symbols = append(filters[i].Symbols, ch.Market)
	}

	return filters
}
