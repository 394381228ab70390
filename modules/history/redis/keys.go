package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
)

// keyspace builds the names of the keys a store owns:
//
//	{prefix}:conv:{chat}:{persona}             zset of every turn of a key
//	{prefix}:part:{chat}:{persona}:{provider}  zset of one retention partition
//	{prefix}:index                             set of all zsets above
//
// Persona and provider segments are escaped so that ':' inside one cannot
// shift the segment boundaries.
type keyspace string

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func segment(s string) string { return segmentEscaper.Replace(s) }

func (k keyspace) conversation(key conversation.Key) string {
	return string(k) + ":conv:" + strconv.FormatInt(key.ChatID, 10) + ":" + segment(key.Persona)
}

func (k keyspace) partition(p conversation.Partition) string {
	return string(k) + ":part:" + strconv.FormatInt(p.ChatID, 10) + ":" + segment(p.Persona) + ":" + segment(p.Provider)
}

func (k keyspace) index() string {
	return string(k) + ":index"
}

func (k keyspace) isConversation(name string) bool {
	return strings.HasPrefix(name, string(k)+":conv:")
}

// record is the zset member. ID must stay the first field: members with
// equal scores sort lexicographically, so a UUIDv7 prefix keeps them in
// insertion order.
type record struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Provider  string `json:"provider"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

func encodeTurn(turn conversation.Turn) (string, error) {
	b, err := json.Marshal(record{
		ID:        turn.ID,
		Role:      string(turn.Role),
		Provider:  turn.Provider,
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt.UnixMicro(),
	})
	if err != nil {
		return "", fmt.Errorf("redis: encode turn: %w", err)
	}
	return string(b), nil
}

func decodeTurn(key conversation.Key, member string) (conversation.Turn, error) {
	var r record
	if err := json.Unmarshal([]byte(member), &r); err != nil {
		return conversation.Turn{}, fmt.Errorf("redis: decode turn: %w", err)
	}
	return conversation.Turn{
		ID:        r.ID,
		Key:       key,
		Role:      conversation.Role(r.Role),
		Content:   r.Content,
		Provider:  r.Provider,
		CreatedAt: time.UnixMicro(r.CreatedAt).UTC(),
	}, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}
