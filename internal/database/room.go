package database

// nextRoom picks the room to assign for a date given the occupied set.
//
// An empty date gets room 1. Otherwise two seam candidates are considered:
// one above an occupied room (stacking on top, bounded by capacity) and one
// below an occupied room (reclaiming a gap left by a release). The lowest
// candidate wins; if neither exists the date is full.
func nextRoom(occupied []int, capacity int) (int, bool) {
	if len(occupied) == 0 {
		return 1, true
	}

	taken := make(map[int]bool, len(occupied))
	for _, room := range occupied {
		taken[room] = true
	}

	best := 0
	for _, room := range occupied {
		if up := room + 1; up <= capacity && !taken[up] {
			if best == 0 || up < best {
				best = up
			}
		}
		if down := room - 1; down >= 1 && !taken[down] {
			if best == 0 || down < best {
				best = down
			}
		}
	}

	if best == 0 {
		return 0, false
	}
	return best, true
}
