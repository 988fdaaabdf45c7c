package sim

import (
	"fmt"
	"strings"

	"threadsim/internal/domain/models"
)

// ExtractChain reconstructs the ordered context for one generation call:
// the root message plus the reply family the new comment belongs to.
//
// With no replyID the chain is the root followed by its direct replies
// (nested replies are not included at this tier). With a replyID the
// chain is the root, the matching direct reply, then that reply's nested
// children in order. An unknown root yields an empty chain.
func (t *Tree) ExtractChain(rootID, replyID string) []*models.Message {
	root, ok := t.Find(rootID)
	if !ok {
		return nil
	}

	if replyID == "" {
		chain := make([]*models.Message, 0, 1+len(root.Replies))
		chain = append(chain, root)
		chain = append(chain, root.Replies...)
		return chain
	}

	reply := childByID(root, replyID)
	if reply == nil {
		return []*models.Message{root}
	}
	chain := make([]*models.Message, 0, 2+len(reply.Replies))
	chain = append(chain, root, reply)
	chain = append(chain, reply.Replies...)
	return chain
}

// RecentLines formats the last n chain messages as compact
// "u/<username>: <content>" lines for prompt context.
func RecentLines(chain []*models.Message, n int) string {
	if len(chain) > n {
		chain = chain[len(chain)-n:]
	}
	lines := make([]string, 0, len(chain))
	for _, m := range chain {
		lines = append(lines, fmt.Sprintf("u/%s: %s", m.Username, m.Content))
	}
	return strings.Join(lines, "\n")
}

// lastN returns the trailing n elements of a message slice.
func lastN(msgs []*models.Message, n int) []*models.Message {
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}
