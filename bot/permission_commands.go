package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/callummance/reactbot/permissions"
	"github.com/sirupsen/logrus"
)

const setSyntax string = "`!set <command> <role>`, `!set <command> <role> remove` or `!set list`"

//handleSetMessage handles a message containing a set command
//command format: !set list | !set <command> <role...> | !set <command> <role...> remove
func (b *ReactBot) handleSetMessage(inv *invocation, args []string) Response {
	if len(args) == 1 && strings.EqualFold(args[0], "list") {
		return b.listPermissions(inv)
	}
	if len(args) >= 3 && strings.EqualFold(args[len(args)-1], "remove") {
		return b.removePermission(inv, args[0], strings.Join(args[1:len(args)-1], " "))
	}
	if len(args) < 2 {
		return inv.usage("Expected a command name and a role.", setSyntax)
	}
	return b.addPermission(inv, args[0], strings.Join(args[1:], " "))
}

func (b *ReactBot) listPermissions(inv *invocation) Response {
	roles, err := b.guildRoles(inv.guildID)
	if err != nil {
		return inv.internalError("Failed to fetch the server's roles", err)
	}
	var lines []string
	for _, entry := range b.Permissions.ListAll() {
		labels := make([]string, 0, len(entry.RoleIDs))
		for _, roleID := range entry.RoleIDs {
			labels = append(labels, roleLabel(roleID, roles))
		}
		lines = append(lines, fmt.Sprintf("%v → %v", entry.Command, strings.Join(labels, ", ")))
	}
	return ResponseListing{
		command:    inv.command,
		commandMsg: inv.commandMsg,
		header:     "**Current command restrictions:**\n",
		empty:      "No command restrictions have been set.",
		lines:      lines,
		timestamp:  time.Now(),
	}
}

func (b *ReactBot) addPermission(inv *invocation, command, roleArg string) Response {
	if !b.Permissions.IsOwner(inv.userID) {
		return inv.notAllowed("Only the bot owner can manage command permissions.")
	}
	command = strings.ToLower(command)
	roles, err := b.guildRoles(inv.guildID)
	if err != nil {
		return inv.internalError("Failed to fetch the server's roles", err)
	}
	role := resolveRole(roleArg, roles)
	if role == nil {
		return inv.notFound(fmt.Sprintf("Role `%v` not found.", roleArg))
	}

	switch b.Permissions.AddRole(command, role.ID) {
	case permissions.AlreadyPresent:
		return inv.duplicate(fmt.Sprintf("Role %v is already permitted to use `%v`.", role.Name, command))
	case permissions.Rejected:
		return inv.usage("A command name and a role are needed.", setSyntax)
	default:
		logrus.Infof("Role %v (%v) may now use command %v", role.Name, role.ID, command)
		return inv.success(fmt.Sprintf("Added role %v to permitted list for `%v`.", role.Name, command))
	}
}

func (b *ReactBot) removePermission(inv *invocation, command, roleArg string) Response {
	if !b.Permissions.IsOwner(inv.userID) {
		return inv.notAllowed("Only the bot owner can manage command permissions.")
	}
	command = strings.ToLower(command)
	roles, err := b.guildRoles(inv.guildID)
	if err != nil {
		return inv.internalError("Failed to fetch the server's roles", err)
	}
	role := resolveRole(roleArg, roles)
	if role == nil {
		return inv.notFound(fmt.Sprintf("Role `%v` not found.", roleArg))
	}

	switch b.Permissions.RemoveRole(command, role.ID) {
	case permissions.NotPresent:
		return inv.notFound(fmt.Sprintf("Role %v was not permitted for command `%v`.", role.Name, command))
	default:
		logrus.Infof("Role %v (%v) may no longer use command %v", role.Name, role.ID, command)
		return inv.success(fmt.Sprintf("Removed role %v from permitted list for `%v`.", role.Name, command))
	}
}
