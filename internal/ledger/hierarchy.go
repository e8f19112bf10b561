package ledger

import (
	"fmt"
	"sort"
)

// Chart is an in-memory view of one company's chart of accounts. Tree
// mutations go through Insert, Reparent and Remove so that levels and leaf
// flags stay consistent; each returns the accounts whose stored fields
// changed and must be persisted.
type Chart struct {
	companyID string
	byID      map[string]*Account
	byCode    map[string]*Account
	children  map[string]map[string]struct{}
}

func NewChart(companyID string, accounts []Account) *Chart {
	c := &Chart{
		companyID: companyID,
		byID:      make(map[string]*Account, len(accounts)),
		byCode:    make(map[string]*Account, len(accounts)),
		children:  make(map[string]map[string]struct{}),
	}
	for i := range accounts {
		a := accounts[i]
		c.byID[a.ID] = &a
		c.byCode[a.Code] = &a
	}
	for _, a := range c.byID {
		if a.ParentID != "" {
			c.link(a.ParentID, a.ID)
		}
	}
	return c
}

func (c *Chart) CompanyID() string { return c.companyID }

func (c *Chart) Get(id string) (*Account, bool) {
	a, ok := c.byID[id]
	return a, ok
}

func (c *Chart) ByCode(code string) (*Account, bool) {
	a, ok := c.byCode[code]
	return a, ok
}

// Children returns the direct children of id in code order.
func (c *Chart) Children(id string) []*Account {
	var out []*Account
	for childID := range c.children[id] {
		out = append(out, c.byID[childID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Accounts returns a copy of every account in code order.
func (c *Chart) Accounts() []Account {
	out := make([]Account, 0, len(c.byID))
	for _, a := range c.byID {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Leaves returns the movement-accepting accounts in code order.
func (c *Chart) Leaves() []Account {
	var out []Account
	for _, a := range c.Accounts() {
		if a.AcceptsMovement {
			out = append(out, a)
		}
	}
	return out
}

// Insert adds a new account under its ParentID (or as a root). The account
// becomes a leaf at parent.Level+1 and a parent that was a leaf stops
// accepting movement.
func (c *Chart) Insert(acct *Account) ([]Account, error) {
	if acct.CompanyID != c.companyID {
		return nil, &HierarchyError{AccountID: acct.ID, Reason: "account belongs to a different company"}
	}
	if _, dup := c.byCode[acct.Code]; dup {
		return nil, fmt.Errorf("%w: code %s", ErrDuplicateAccount, acct.Code)
	}
	if _, dup := c.byID[acct.ID]; dup {
		return nil, fmt.Errorf("%w: id %s", ErrDuplicateAccount, acct.ID)
	}

	var parent *Account
	if acct.ParentID != "" {
		p, err := c.parentFor(acct.ID, acct.ParentID)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	a := *acct
	a.Level = 1
	a.AcceptsMovement = true
	if parent != nil {
		a.Level = parent.Level + 1
	}
	c.byID[a.ID] = &a
	c.byCode[a.Code] = &a
	*acct = a

	changed := []Account{a}
	if parent != nil {
		c.link(parent.ID, a.ID)
		if c.refreshLeaf(parent) {
			changed = append(changed, *parent)
		}
	}
	return changed, nil
}

// Reparent moves an account under newParentID, or to the root when it is
// empty. Levels are recomputed for the whole moved subtree.
func (c *Chart) Reparent(id, newParentID string) ([]Account, error) {
	a, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if a.ParentID == newParentID {
		return nil, nil
	}

	var newParent *Account
	if newParentID != "" {
		if newParentID == id {
			return nil, &HierarchyError{AccountID: id, Reason: "account cannot be its own parent"}
		}
		p, err := c.parentFor(id, newParentID)
		if err != nil {
			return nil, err
		}
		if c.isDescendant(newParentID, id) {
			return nil, &HierarchyError{AccountID: id, Reason: fmt.Sprintf("moving under %s would create a cycle", p.Code)}
		}
		newParent = p
	}

	changed := make(map[string]struct{})
	oldParentID := a.ParentID
	if oldParentID != "" {
		delete(c.children[oldParentID], id)
		if old := c.byID[oldParentID]; old != nil && c.refreshLeaf(old) {
			changed[old.ID] = struct{}{}
		}
	}

	a.ParentID = newParentID
	if newParent != nil {
		c.link(newParent.ID, id)
		if c.refreshLeaf(newParent) {
			changed[newParent.ID] = struct{}{}
		}
	}
	changed[id] = struct{}{}
	for _, sub := range c.relevel(a) {
		changed[sub] = struct{}{}
	}

	return c.collect(changed), nil
}

// Remove detaches a leaf account. The caller must check the account has no
// ledger lines. A parent left without children accepts movement again.
func (c *Chart) Remove(id string) ([]Account, error) {
	a, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if len(c.children[id]) > 0 {
		return nil, &HierarchyError{AccountID: id, Reason: "account has children"}
	}

	delete(c.byID, id)
	delete(c.byCode, a.Code)
	delete(c.children, id)

	if a.ParentID == "" {
		return nil, nil
	}
	delete(c.children[a.ParentID], id)
	if p := c.byID[a.ParentID]; p != nil && c.refreshLeaf(p) {
		return []Account{*p}, nil
	}
	return nil, nil
}

// Verify checks level and leaf invariants for every account and returns
// one message per violation.
func (c *Chart) Verify() []string {
	var problems []string
	for _, a := range c.Accounts() {
		want := 1
		if a.ParentID != "" {
			p, ok := c.byID[a.ParentID]
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: parent %s missing", a.Code, a.ParentID))
				continue
			}
			want = p.Level + 1
		}
		if a.Level != want {
			problems = append(problems, fmt.Sprintf("%s: level %d, expected %d", a.Code, a.Level, want))
		}
		if leaf := len(c.children[a.ID]) == 0; a.AcceptsMovement != leaf {
			problems = append(problems, fmt.Sprintf("%s: accepts_movement=%t with %d children", a.Code, a.AcceptsMovement, len(c.children[a.ID])))
		}
	}
	return problems
}

func (c *Chart) parentFor(childID, parentID string) (*Account, error) {
	p, ok := c.byID[parentID]
	if !ok {
		return nil, &HierarchyError{AccountID: childID, Reason: fmt.Sprintf("parent %s not found in company %s", parentID, c.companyID)}
	}
	if p.CompanyID != c.companyID {
		return nil, &HierarchyError{AccountID: childID, Reason: "parent belongs to a different company"}
	}
	return p, nil
}

// isDescendant reports whether id sits somewhere below ancestorID.
func (c *Chart) isDescendant(id, ancestorID string) bool {
	seen := make(map[string]bool)
	for cur := c.byID[id]; cur != nil && cur.ParentID != ""; cur = c.byID[cur.ParentID] {
		if cur.ParentID == ancestorID {
			return true
		}
		if seen[cur.ID] {
			return true
		}
		seen[cur.ID] = true
	}
	return false
}

func (c *Chart) link(parentID, childID string) {
	set, ok := c.children[parentID]
	if !ok {
		set = make(map[string]struct{})
		c.children[parentID] = set
	}
	set[childID] = struct{}{}
}

// refreshLeaf syncs AcceptsMovement with the child count and reports
// whether it changed.
func (c *Chart) refreshLeaf(a *Account) bool {
	leaf := len(c.children[a.ID]) == 0
	if a.AcceptsMovement == leaf {
		return false
	}
	a.AcceptsMovement = leaf
	return true
}

// relevel recomputes levels breadth-first from root and returns the ids of
// descendants whose level changed.
func (c *Chart) relevel(root *Account) []string {
	root.Level = 1
	if root.ParentID != "" {
		root.Level = c.byID[root.ParentID].Level + 1
	}

	var changed []string
	queue := []*Account{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range c.Children(cur.ID) {
			if child.Level != cur.Level+1 {
				child.Level = cur.Level + 1
				changed = append(changed, child.ID)
			}
			queue = append(queue, child)
		}
	}
	return changed
}

func (c *Chart) collect(ids map[string]struct{}) []Account {
	out := make([]Account, 0, len(ids))
	for id := range ids {
		out = append(out, *c.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
