package core

// router maps connections to the broadcast group of the token they joined.
// Privileged connections are implicitly members of whatever group is current.
type router struct {
	groups     map[string]map[*Client]struct{}
	privileged map[*Client]struct{}
}

func newRouter() *router {
	return &router{
		groups:     make(map[string]map[*Client]struct{}),
		privileged: make(map[*Client]struct{}),
	}
}

// subscribe moves c into the group keyed by token.
func (r *router) subscribe(c *Client, token string) {
	if c.group == token {
		return
	}
	r.leave(c)
	group, ok := r.groups[token]
	if !ok {
		group = make(map[*Client]struct{})
		r.groups[token] = group
	}
	group[c] = struct{}{}
	c.group = token
}

// leave drops c from its group, if any.
func (r *router) leave(c *Client) {
	if c.group == "" {
		return
	}
	if group, ok := r.groups[c.group]; ok {
		delete(group, c)
		if len(group) == 0 {
			delete(r.groups, c.group)
		}
	}
	c.group = ""
}

func (r *router) promote(c *Client) {
	r.privileged[c] = struct{}{}
}

// remove forgets c entirely.
func (r *router) remove(c *Client) {
	r.leave(c)
	delete(r.privileged, c)
}

// recipients lists members of token's group plus all privileged connections,
// each once, without exclude.
func (r *router) recipients(token string, exclude *Client) []*Client {
	group := r.groups[token]
	out := make([]*Client, 0, len(group)+len(r.privileged))
	for c := range group {
		if c != exclude {
			out = append(out, c)
		}
	}
	for c := range r.privileged {
		if c == exclude {
			continue
		}
		if _, dup := group[c]; dup {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dissolve removes token's group and returns its former members.
func (r *router) dissolve(token string) []*Client {
	group := r.groups[token]
	out := make([]*Client, 0, len(group))
	for c := range group {
		c.group = ""
		out = append(out, c)
	}
	delete(r.groups, token)
	return out
}

// size returns the number of members subscribed to token.
func (r *router) size(token string) int {
	return len(r.groups[token])
}
