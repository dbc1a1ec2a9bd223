package journal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultDatabase is the database field of entries for the default
// database.
const DefaultDatabase = "def"

// Op is the kind of a journal entry.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpRemove
	OpClientAdd
	OpClientRemove
)

// String returns the keyword written to the journal.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "ADD"
	case OpRemove:
		return "REMOVE"
	case OpClientAdd:
		return "CLIENTADD"
	case OpClientRemove:
		return "CLIENTREMOVE"
	default:
		return "UNKNOWN"
	}
}

// ErrMalformed is returned for lines that are not valid journal entries.
var ErrMalformed = errors.New("malformed journal line")

// Entry is one journal line. ID, Database and Location are only used by
// OpAdd and OpRemove.
type Entry struct {
	Op       Op
	ID       uint64
	Database string
	Location string
	Endpoint string
}

// Add returns an ADD entry.
func Add(id uint64, db, location, endpoint string) Entry {
	return Entry{Op: OpAdd, ID: id, Database: db, Location: location, Endpoint: endpoint}
}

// Remove returns a REMOVE entry.
func Remove(id uint64, db, location, endpoint string) Entry {
	return Entry{Op: OpRemove, ID: id, Database: db, Location: location, Endpoint: endpoint}
}

// ClientAdd returns a CLIENTADD entry.
func ClientAdd(endpoint string) Entry {
	return Entry{Op: OpClientAdd, Endpoint: endpoint}
}

// ClientRemove returns a CLIENTREMOVE entry.
func ClientRemove(endpoint string) Entry {
	return Entry{Op: OpClientRemove, Endpoint: endpoint}
}

// String renders the entry as a journal line without the newline.
func (e Entry) String() string {
	switch e.Op {
	case OpAdd, OpRemove:
		return fmt.Sprintf("%s %d %s %s %s", e.Op, e.ID,
			Quote(e.Database), Quote(e.Location), Quote(e.Endpoint))
	default:
		return e.Op.String() + " " + Quote(e.Endpoint)
	}
}

// ParseLine parses one journal line. Lines with a missing or empty
// field, a zero id or trailing text are malformed.
func ParseLine(line string) (Entry, error) {
	keyword, rest, _ := strings.Cut(line, " ")
	var e Entry
	switch keyword {
	case "ADD":
		e.Op = OpAdd
	case "REMOVE":
		e.Op = OpRemove
	case "CLIENTADD":
		e.Op = OpClientAdd
	case "CLIENTREMOVE":
		e.Op = OpClientRemove
	default:
		return Entry{}, fmt.Errorf("%w: unknown keyword %q", ErrMalformed, keyword)
	}

	var err error
	if e.Op == OpAdd || e.Op == OpRemove {
		rest = strings.TrimLeft(rest, " \t")
		digits, tail, _ := strings.Cut(rest, " ")
		e.ID, err = strconv.ParseUint(digits, 10, 64)
		if err != nil || e.ID == 0 {
			return Entry{}, fmt.Errorf("%w: bad id %q", ErrMalformed, digits)
		}
		rest = tail
		for _, field := range []*string{&e.Database, &e.Location} {
			if *field, rest, err = nextField(rest); err != nil {
				return Entry{}, err
			}
		}
	}
	if e.Endpoint, rest, err = nextField(rest); err != nil {
		return Entry{}, err
	}
	if strings.TrimSpace(rest) != "" {
		return Entry{}, fmt.Errorf("%w: trailing text", ErrMalformed)
	}
	return e, nil
}

func nextField(s string) (string, string, error) {
	s = strings.TrimLeft(s, " \t")
	v, rest, err := Unquote(s)
	if err != nil {
		return "", s, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if v == "" {
		return "", rest, fmt.Errorf("%w: empty field", ErrMalformed)
	}
	return v, rest, nil
}
