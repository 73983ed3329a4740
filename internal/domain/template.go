package domain

// PickActiveTemplate deterministically selects the template to render when
// more than one active template exists for a type: the most recently updated
// wins, ties go to the lowest id. Inactive templates are ignored. Returns nil
// when none is active.
func PickActiveTemplate(templates []*NotificationTemplate) *NotificationTemplate {
	var picked *NotificationTemplate
	for _, tpl := range templates {
		if tpl == nil || !tpl.IsActive {
			continue
		}
		if picked == nil {
			picked = tpl
			continue
		}
		switch {
		case tpl.UpdatedAt.After(picked.UpdatedAt):
			picked = tpl
		case tpl.UpdatedAt.Equal(picked.UpdatedAt) && tpl.ID.Hex() < picked.ID.Hex():
			picked = tpl
		}
	}
	return picked
}
