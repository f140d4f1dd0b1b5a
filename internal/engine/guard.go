package engine

import (
	"fmt"
	"strings"

	"shootboard/internal/domain"
)

// clientSeparator joins blocking client names in the refusal message.
const clientSeparator = "、"

// CanDelete returns the projects that still reference person by name and,
// when there are any, the message to show for the refused delete. Directors
// are matched on Project.Director, creators on Project.AssignedCreator.
func CanDelete(role domain.Role, person domain.Person, projects []domain.Project) ([]domain.Project, string) {
	var blocking []domain.Project
	for _, p := range projects {
		ref := p.Director
		if role == domain.RoleCreator {
			ref = p.AssignedCreator
		}
		if ref == person.Name {
			blocking = append(blocking, p)
		}
	}
	if len(blocking) == 0 {
		return nil, ""
	}
	clients := make([]string, 0, len(blocking))
	for _, p := range blocking {
		clients = append(clients, p.Client)
	}
	msg := fmt.Sprintf("%sさんは案件（%s）にアサインされているため削除できません。", person.Name, strings.Join(clients, clientSeparator))
	return blocking, msg
}

func referentialConflict(role domain.Role, blocking []domain.Project, msg string) *Failure {
	return &Failure{
		Code:     CodeReferentialConflict,
		Kind:     role.Kind(),
		Op:       OpDelete,
		Message:  msg,
		Blocking: blocking,
	}
}
