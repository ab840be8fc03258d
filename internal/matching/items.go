package matching

import "fmt"

// RequestedItemType identifies what kind of media an order line asks for.
type RequestedItemType string

const (
	ItemSong   RequestedItemType = "song"
	ItemArtist RequestedItemType = "artist"
	ItemGenre  RequestedItemType = "genre"
	ItemMovie  RequestedItemType = "movie"
	ItemVideo  RequestedItemType = "video"
)

// Valid reports whether t is a known item type.
func (t RequestedItemType) Valid() bool {
	switch t {
	case ItemSong, ItemArtist, ItemGenre, ItemMovie, ItemVideo:
		return true
	}
	return false
}

// RequestedItem is one line of an order: the requested text and what kind of
// thing it names.
type RequestedItem struct {
	Type RequestedItemType
	Text string
}

func (i RequestedItem) String() string {
	return fmt.Sprintf("%s:%s", i.Type, i.Text)
}
