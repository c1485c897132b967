package commands

import (
	"fmt"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/printers"
)

// lookup finds id in the loaded range.
func lookup(coord *agenda.Coordinator, id string) (*calendar.Item, error) {
	it, ok := coord.Item(id)
	if !ok {
		return nil, fmt.Errorf("%s is not in %s, pass --on with a date inside its range", id, printers.RangeTitle(coord.Range()))
	}
	return it, nil
}

// printItem prints the refreshed copy of id, if it is still in range.
func printItem(coord *agenda.Coordinator, id string) {
	pp := printers.PrettyPrint{ShowID: true}
	if it, ok := coord.Item(id); ok {
		pp.Item(it)
	}
}
