package client

// cnxn is one subscription as the client sees it.
type cnxn struct {
	clientID uint64
	serverID uint64
	location string
	handler  Handler
	userData any
}

// cnxnTable stores the subscriptions of one engine in an arena indexed
// by client id and by server id. Freed slots are reused.
type cnxnTable struct {
	arena    []cnxn
	free     []int
	byClient map[uint64]int
	byServer map[uint64]int
}

func newCnxnTable() *cnxnTable {
	return &cnxnTable{
		byClient: make(map[uint64]int),
		byServer: make(map[uint64]int),
	}
}

func (t *cnxnTable) add(c cnxn) {
	var slot int
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
		t.arena[slot] = c
	} else {
		slot = len(t.arena)
		t.arena = append(t.arena, c)
	}
	t.byClient[c.clientID] = slot
	t.byServer[c.serverID] = slot
}

func (t *cnxnTable) byClientID(id uint64) (*cnxn, bool) {
	slot, ok := t.byClient[id]
	if !ok {
		return nil, false
	}
	return &t.arena[slot], true
}

func (t *cnxnTable) byServerID(id uint64) (*cnxn, bool) {
	slot, ok := t.byServer[id]
	if !ok {
		return nil, false
	}
	return &t.arena[slot], true
}

// remove deletes the subscription with client id id and returns it.
func (t *cnxnTable) remove(id uint64) (cnxn, bool) {
	slot, ok := t.byClient[id]
	if !ok {
		return cnxn{}, false
	}
	c := t.arena[slot]
	delete(t.byClient, id)
	if t.byServer[c.serverID] == slot {
		delete(t.byServer, c.serverID)
	}
	t.arena[slot] = cnxn{}
	t.free = append(t.free, slot)
	return c, true
}

// rekey moves the subscription known under server id old to new.
func (t *cnxnTable) rekey(old, new uint64) bool {
	slot, ok := t.byServer[old]
	if !ok {
		return false
	}
	delete(t.byServer, old)
	t.byServer[new] = slot
	t.arena[slot].serverID = new
	return true
}

// serverIDs returns the server ids of all subscriptions.
func (t *cnxnTable) serverIDs() []uint64 {
	ids := make([]uint64, 0, len(t.byServer))
	for id := range t.byServer {
		ids = append(ids, id)
	}
	return ids
}

func (t *cnxnTable) len() int {
	return len(t.byClient)
}
