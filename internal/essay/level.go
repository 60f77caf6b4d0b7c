package essay

import "fmt"

// Level is a learner's proficiency tier.
type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"
)

var levelOrder = []Level{Beginner, Intermediate, Advanced}

// ParseLevel validates a level name.
func ParseLevel(s string) (Level, error) {
	for _, l := range levelOrder {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown proficiency level %q", s)
}

// Next returns the level above l, or false at the top.
func (l Level) Next() (Level, bool) {
	i := l.index()
	if i < 0 || i == len(levelOrder)-1 {
		return l, false
	}
	return levelOrder[i+1], true
}

// Prev returns the level below l, or false at the floor.
func (l Level) Prev() (Level, bool) {
	i := l.index()
	if i <= 0 {
		return l, false
	}
	return levelOrder[i-1], true
}

func (l Level) index() int {
	for i, o := range levelOrder {
		if o == l {
			return i
		}
	}
	return -1
}
