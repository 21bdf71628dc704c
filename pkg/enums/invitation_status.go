package enums

// InvitationStatus tracks one driver's invitation to deliver an order.
type InvitationStatus string

const (
	InvitationStatusInvited  InvitationStatus = "invited"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
	// InvitationStatusVoided marks invitations closed because another driver won.
	InvitationStatusVoided InvitationStatus = "voided"
)

var validInvitationStatuses = []InvitationStatus{
	InvitationStatusInvited,
	InvitationStatusAccepted,
	InvitationStatusDeclined,
	InvitationStatusVoided,
}

func (s InvitationStatus) IsValid() bool {
	for _, candidate := range validInvitationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
