//Package grant decides what should happen when a member reacts to, or claims a role from, a
//reaction-role message.
package grant

import (
	"github.com/bwmarrin/discordgo"
	"github.com/callummance/reactbot/guildmodels"
)

//Action is the direction of the triggering event
type Action int

const (
	//Add is a reaction being added or a claim button being pressed
	Add Action = iota
	//Remove is a reaction being removed
	Remove
)

func (a Action) String() string {
	if a == Remove {
		return "remove"
	}
	return "add"
}

//Outcome is the decision reached for a single rule
type Outcome int

const (
	//DeniedMissingPrerequisite means the member lacks the rule's required role
	DeniedMissingPrerequisite Outcome = iota
	//DeniedRoleNotFound means the role to be granted no longer exists
	DeniedRoleNotFound
	//DeniedBotLacksPermission means the bot cannot manage roles at all
	DeniedBotLacksPermission
	//DeniedHierarchy means the role sits at or above the bot's highest role
	DeniedHierarchy
	//NoOpAlreadyGranted means the member already holds the role
	NoOpAlreadyGranted
	//Granted means the role should be added to the member
	Granted
	//Revoked means the role should be taken from the member
	Revoked
	//NoOpNotGranted means the member did not hold the role to begin with
	NoOpNotGranted
)

var outcomeNames = map[Outcome]string{
	DeniedMissingPrerequisite: "denied_missing_prerequisite",
	DeniedRoleNotFound:        "denied_role_not_found",
	DeniedBotLacksPermission:  "denied_bot_lacks_permission",
	DeniedHierarchy:           "denied_hierarchy",
	NoOpAlreadyGranted:        "noop_already_granted",
	Granted:                   "granted",
	Revoked:                   "revoked",
	NoOpNotGranted:            "noop_not_granted",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

//Denied is true for every outcome which refuses the event
func (o Outcome) Denied() bool {
	switch o {
	case DeniedMissingPrerequisite, DeniedRoleNotFound, DeniedBotLacksPermission, DeniedHierarchy:
		return true
	}
	return false
}

//Mutates is true when the caller has to change the member's roles
func (o Outcome) Mutates() bool {
	return o == Granted || o == Revoked
}

//Authority is what the bot itself is able to do in the guild
type Authority struct {
	CanManageRoles  bool
	HighestPosition int
}

//Request holds everything needed to decide on one rule
type Request struct {
	Rule          guildmodels.RoleGrantRule
	Action        Action
	MemberRoleIDs []string
	Catalog       []*discordgo.Role
	Bot           Authority
}

//Evaluate runs the checks in order and returns the first failure, or the grant/revoke decision.
//The prerequisite applies to removals as well, so members who lose the gate cannot shed the role
//through the same message.
func Evaluate(req Request) Outcome {
	if req.Rule.IsGated() && !hasRole(req.MemberRoleIDs, req.Rule.RequiredRole()) {
		return DeniedMissingPrerequisite
	}
	target := findRole(req.Catalog, req.Rule.RoleID)
	if target == nil {
		return DeniedRoleNotFound
	}
	if !req.Bot.CanManageRoles {
		return DeniedBotLacksPermission
	}
	if target.Position >= req.Bot.HighestPosition {
		return DeniedHierarchy
	}

	held := hasRole(req.MemberRoleIDs, target.ID)
	if req.Action == Remove {
		if held {
			return Revoked
		}
		return NoOpNotGranted
	}
	if held {
		return NoOpAlreadyGranted
	}
	return Granted
}

func hasRole(roleIDs []string, roleID string) bool {
	for _, id := range roleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func findRole(catalog []*discordgo.Role, roleID string) *discordgo.Role {
	for _, role := range catalog {
		if role != nil && role.ID == roleID {
			return role
		}
	}
	return nil
}
