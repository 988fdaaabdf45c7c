package sim

import (
	"testing"

	"threadsim/internal/domain/models"
)

func newTestTree() (*Tree, *models.Message, *models.Message, *models.Message) {
	root := models.NewUserMessage("root comment")
	reply := models.NewAssistantMessage("alice", 100, "direct reply")
	nested := models.NewAssistantMessage("bob", 200, "nested reply")
	reply.Replies = append(reply.Replies, nested)
	root.Replies = append(root.Replies, reply)
	return NewTree([]*models.Message{root}), root, reply, nested
}

func TestNestingLevel(t *testing.T) {
	tree, root, reply, _ := newTestTree()

	tests := []struct {
		name     string
		parentID string
		replyID  string
		expected int
	}{
		{name: "no parent is a root comment", parentID: "", replyID: "", expected: 0},
		{name: "unknown parent falls back to root", parentID: "missing", replyID: "", expected: 0},
		{name: "parent only is a direct reply", parentID: root.ID, replyID: "", expected: 1},
		{name: "unknown reply falls back to direct reply", parentID: root.ID, replyID: "missing", expected: 1},
		{name: "reply with children is at capacity", parentID: root.ID, replyID: reply.ID, expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tree.NestingLevel(tt.parentID, tt.replyID); got != tt.expected {
				t.Errorf("NestingLevel(%q, %q) = %d, want %d", tt.parentID, tt.replyID, got, tt.expected)
			}
		})
	}

	t.Run("reply without children is a nested reply", func(t *testing.T) {
		root2 := models.NewUserMessage("another root")
		leaf := models.NewAssistantMessage("carol", 50, "leaf reply")
		root2.Replies = append(root2.Replies, leaf)
		tr := NewTree([]*models.Message{root2})
		if got := tr.NestingLevel(root2.ID, leaf.ID); got != 2 {
			t.Errorf("NestingLevel = %d, want 2", got)
		}
	})
}

func TestInsertFlattensDeepReplies(t *testing.T) {
	tree, root, reply, nested := newTestTree()

	// Replying to a reply that already has children must land next to
	// those children, never under them.
	msg := models.NewAssistantMessage("carol", 10, "late to the party")
	level := tree.Insert(root.ID, reply.ID, msg)

	if level != 3 {
		t.Fatalf("Insert level = %d, want 3", level)
	}
	if len(reply.Replies) != 2 {
		t.Fatalf("reply has %d children, want 2", len(reply.Replies))
	}
	if reply.Replies[1] != msg {
		t.Errorf("new message is not a sibling of the nested reply")
	}
	if len(nested.Replies) != 0 {
		t.Errorf("nested reply gained children, tree deepened beyond capacity")
	}
}

func TestInsertLevels(t *testing.T) {
	tree, root, _, _ := newTestTree()

	newRoot := models.NewUserMessage("second root")
	if level := tree.Insert("", "", newRoot); level != 0 {
		t.Errorf("root insert level = %d, want 0", level)
	}
	if len(tree.Roots()) != 2 {
		t.Errorf("roots = %d, want 2", len(tree.Roots()))
	}

	direct := models.NewAssistantMessage("dave", 5, "direct")
	if level := tree.Insert(newRoot.ID, "", direct); level != 1 {
		t.Errorf("direct reply level = %d, want 1", level)
	}

	nested := models.NewAssistantMessage("erin", 5, "nested")
	if level := tree.Insert(newRoot.ID, direct.ID, nested); level != 2 {
		t.Errorf("nested reply level = %d, want 2", level)
	}

	// Inserted nodes must be findable immediately.
	if _, ok := tree.Find(nested.ID); !ok {
		t.Errorf("nested message not indexed after insert")
	}
	_ = root
}

func TestVote(t *testing.T) {
	tree, root, _, _ := newTestTree()

	if !tree.Vote(root.ID, true) {
		t.Fatal("Vote returned false for existing message")
	}
	if !tree.Vote(root.ID, false) {
		t.Fatal("Vote returned false for existing message")
	}
	if root.Upvotes != 1 || root.Downvotes != 1 {
		t.Errorf("votes = %d up / %d down, want 1/1", root.Upvotes, root.Downvotes)
	}
	if tree.Vote("missing", true) {
		t.Error("Vote returned true for unknown message")
	}
}

func TestToggleReplyEditorClosesSiblings(t *testing.T) {
	tree, root, reply, nested := newTestTree()

	sibling := models.NewAssistantMessage("carol", 10, "sibling")
	tree.Insert(root.ID, reply.ID, sibling)

	if !tree.ToggleReplyEditor(reply.ID, nested.ID) {
		t.Fatal("toggle failed for nested message")
	}
	if !nested.IsReplyOpen {
		t.Fatal("nested editor did not open")
	}

	// Opening the sibling's editor closes the first one.
	if !tree.ToggleReplyEditor(reply.ID, sibling.ID) {
		t.Fatal("toggle failed for sibling")
	}
	if nested.IsReplyOpen {
		t.Error("nested editor stayed open after sibling toggle")
	}
	if !sibling.IsReplyOpen {
		t.Error("sibling editor did not open")
	}

	// Toggling the same target again closes it.
	tree.ToggleReplyEditor(reply.ID, sibling.ID)
	if sibling.IsReplyOpen {
		t.Error("second toggle did not close the editor")
	}

	if tree.ToggleReplyEditor("missing", "") {
		t.Error("toggle returned true for unknown target")
	}
}

func TestClearResetsToWelcome(t *testing.T) {
	tree, _, _, _ := newTestTree()
	tree.Clear()

	roots := tree.Roots()
	if len(roots) != 1 {
		t.Fatalf("roots after clear = %d, want 1", len(roots))
	}
	welcome := roots[0]
	if welcome.Username != models.UsernameModerator {
		t.Errorf("welcome author = %q, want %q", welcome.Username, models.UsernameModerator)
	}
	if welcome.Karma != models.ModeratorKarma {
		t.Errorf("welcome karma = %d, want %d", welcome.Karma, models.ModeratorKarma)
	}
	if welcome.Upvotes != 1 {
		t.Errorf("welcome upvotes = %d, want 1", welcome.Upvotes)
	}
	if tree.CountComments() != 0 {
		t.Errorf("CountComments after clear = %d, want 0", tree.CountComments())
	}
}

func TestCountCommentsExcludesWelcome(t *testing.T) {
	tree := NewTree(nil)
	tree.Clear()
	tree.Insert("", "", models.NewUserMessage("hello"))
	welcomeID := tree.Roots()[0].ID
	tree.Insert(welcomeID, "", models.NewAssistantMessage("alice", 1, "hi"))

	if got := tree.CountComments(); got != 2 {
		t.Errorf("CountComments = %d, want 2", got)
	}
}
