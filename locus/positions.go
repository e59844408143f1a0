package locus

import (
	"encoding/json"
	"sort"
	"strings"
)

// Positions is a list of base-pair positions. In summary tables it is stored
// as a JSON integer array.
type Positions []int

func (p Positions) MarshalCSV() (string, error) {
	if p == nil {
		return "[]", nil
	}

	b, err := json.Marshal([]int(p))
	return string(b), err
}

func (p *Positions) UnmarshalCSV(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*p = Positions{}
		return nil
	}

	var out []int
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return err
	}
	*p = out

	return nil
}

// Unique returns the sorted, deduplicated positions.
func (p Positions) Unique() Positions {
	out := make(Positions, len(p))
	copy(out, p)
	sort.Ints(out)

	j := 0
	for i, v := range out {
		if i > 0 && v == out[j-1] {
			continue
		}
		out[j] = v
		j++
	}

	return out[:j]
}
