// Package sim implements the conversation core: the message tree, the
// context chain extractor, persona selection and the turn orchestrator.
package sim

import (
	"threadsim/internal/domain/models"
)

// WelcomeMessage is the system-authored root comment seeded into every
// new or cleared thread.
const WelcomeMessage = "Welcome to the thread! Feel free to start a discussion, and one of our community members will respond."

// nodeRef locates a message inside the tree: the node itself, its
// parent (nil for roots), its root ancestor and its depth (0 root,
// 1 direct reply, 2 nested reply).
type nodeRef struct {
	msg    *models.Message
	parent *models.Message
	root   *models.Message
	depth  int
}

// Tree is one thread's comment tree plus an id index rebuilt after every
// mutation. Finding a node by id is needed by chain extraction, voting
// and placement alike, so the lookup lives here once.
type Tree struct {
	roots []*models.Message
	index map[string]nodeRef
}

// NewTree wraps a stored forest of root messages.
func NewTree(roots []*models.Message) *Tree {
	t := &Tree{roots: roots}
	t.reindex()
	return t
}

// Roots returns the root messages in chronological order.
func (t *Tree) Roots() []*models.Message {
	return t.roots
}

// Find returns the node with the given id, searching all levels.
func (t *Tree) Find(id string) (*models.Message, bool) {
	ref, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return ref.msg, true
}

// NestingLevel classifies where a new reply would land:
//
//	0: no parent, a new root message
//	1: direct reply to a root message
//	2: reply to a direct reply that has no children yet
//	3: reply to a direct reply that is at capacity
//
// A parent id that cannot be found yields 0.
func (t *Tree) NestingLevel(parentID, replyID string) int {
	if parentID == "" {
		return 0
	}
	parent, ok := t.Find(parentID)
	if !ok {
		return 0
	}
	if replyID == "" {
		return 1
	}
	reply := childByID(parent, replyID)
	if reply == nil {
		return 1
	}
	if len(reply.Replies) > 0 {
		return 3
	}
	return 2
}

// Insert places a new message according to the nesting policy and
// returns the level it was classified at. At level 3 the node is
// flattened: it becomes a sibling of the target reply's existing
// children instead of opening a fourth tier.
func (t *Tree) Insert(parentID, replyID string, msg *models.Message) int {
	level := t.NestingLevel(parentID, replyID)
	switch level {
	case 0:
		t.roots = append(t.roots, msg)
	case 1:
		parent, _ := t.Find(parentID)
		parent.Replies = append(parent.Replies, msg)
	default: // 2 and 3 both append to the direct reply's children
		parent, _ := t.Find(parentID)
		reply := childByID(parent, replyID)
		reply.Replies = append(reply.Replies, msg)
	}
	t.reindex()
	return level
}

// Vote increments exactly one counter on the targeted node. Returns
// false when the node does not exist.
func (t *Tree) Vote(id string, up bool) bool {
	msg, ok := t.Find(id)
	if !ok {
		return false
	}
	if up {
		msg.Upvotes++
	} else {
		msg.Downvotes++
	}
	return true
}

// ToggleReplyEditor flips the reply-editor flag on the targeted node and
// closes the editors of its siblings at the same tree level. With an
// empty replyID the target is the root message identified by parentID.
// Returns false when the target does not exist.
func (t *Tree) ToggleReplyEditor(parentID, replyID string) bool {
	if replyID == "" {
		target, ok := t.Find(parentID)
		if !ok {
			return false
		}
		for _, root := range t.roots {
			if root != target {
				root.IsReplyOpen = false
			}
		}
		target.IsReplyOpen = !target.IsReplyOpen
		return true
	}

	parent, ok := t.Find(parentID)
	if !ok {
		return false
	}
	target := childByID(parent, replyID)
	if target == nil {
		return false
	}
	for _, sibling := range parent.Replies {
		if sibling != target {
			sibling.IsReplyOpen = false
		}
	}
	target.IsReplyOpen = !target.IsReplyOpen
	return true
}

// CloseAllEditors clears every reply-editor flag, used after a reply is
// submitted.
func (t *Tree) CloseAllEditors() {
	for _, ref := range t.index {
		ref.msg.IsReplyOpen = false
	}
}

// Clear replaces the whole tree with a fresh welcome message.
func (t *Tree) Clear() {
	welcome := models.NewModeratorMessage(WelcomeMessage)
	welcome.Upvotes = 1
	t.roots = []*models.Message{welcome}
	t.reindex()
}

// LastRootSpeaker returns the username of the most recent root message's
// author, or empty for an empty tree.
func (t *Tree) LastRootSpeaker() string {
	if len(t.roots) == 0 {
		return ""
	}
	return t.roots[len(t.roots)-1].Username
}

// CountComments returns the number of comments in the thread, excluding
// the seeded welcome message.
func (t *Tree) CountComments() int {
	n := 0
	for _, root := range t.roots {
		n += root.CountNodes()
	}
	for _, root := range t.roots {
		if root.Username == models.UsernameModerator && root.Content == WelcomeMessage {
			n--
			break
		}
	}
	return n
}

func (t *Tree) reindex() {
	t.index = make(map[string]nodeRef)
	for _, root := range t.roots {
		t.indexSubtree(root, nil, root, 0)
	}
}

func (t *Tree) indexSubtree(msg, parent, root *models.Message, depth int) {
	t.index[msg.ID] = nodeRef{msg: msg, parent: parent, root: root, depth: depth}
	for _, r := range msg.Replies {
		t.indexSubtree(r, msg, root, depth+1)
	}
}

// childByID returns the direct child of parent with the given id.
func childByID(parent *models.Message, id string) *models.Message {
	for _, r := range parent.Replies {
		if r.ID == id {
			return r
		}
	}
	return nil
}
