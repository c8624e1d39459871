package pusher

import "encoding/json"

// Member is a single entry in a presence channel's roster. UserInfo is left
// as an opaque decoded value (map[string]interface{}, slice, scalar, or nil)
// since the server places no constraint on its shape.
type Member struct {
	UserID   string      `json:"user_id"`
	UserInfo interface{} `json:"user_info,omitempty"`
}

type memberPayload struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
}

func memberFromPayload(raw json.RawMessage) (Member, error) {
	var p memberPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Member{}, err
	}
	m := Member{UserID: p.UserID}
	if len(p.UserInfo) > 0 {
		if err := json.Unmarshal(p.UserInfo, &m.UserInfo); err != nil {
			return Member{}, err
		}
	}
	return m, nil
}

// membersFromHash decodes the presence.hash map carried on
// pusher_internal:subscription_succeeded ({userId: userInfo, ...}) into a
// slice of Member. Order is not significant to the protocol and is not
// guaranteed here (map iteration order); callers that need a stable order
// must sort by UserID themselves.
func membersFromHash(hash map[string]json.RawMessage) ([]Member, error) {
	members := make([]Member, 0, len(hash))
	for userID, infoRaw := range hash {
		m := Member{UserID: userID}
		if len(infoRaw) > 0 && string(infoRaw) != "null" {
			if err := json.Unmarshal(infoRaw, &m.UserInfo); err != nil {
				return nil, err
			}
		}
		members = append(members, m)
	}
	return members, nil
}
