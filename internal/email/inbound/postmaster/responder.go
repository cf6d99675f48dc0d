package postmaster

import "github.com/jamesgurung/school-helpdesk/internal/models"

// Response is the auto-reply sent for a rejected message.
type Response struct {
	Heading string
	Body    string
	Tag     string
}

// ExplainRejection maps a rejection reason to its fixed auto-reply text.
// It is total over the reason enum and performs no decisions of its own.
func ExplainRejection(reason RejectedReason) Response {
	switch reason {
	case ReasonStaffSender:
		return Response{
			Heading: "Please reply in the helpdesk.",
			Body: "This mailbox is only for use by parents and carers of current students. " +
				"Staff should sign in to the helpdesk website to view and respond to tickets.",
			Tag: models.EmailTagUnknown,
		}
	case ReasonUnknownTicket:
		return Response{
			Heading: "Ticket not recognised.",
			Body: "The ticket number in your email subject does not match an enquiry registered to your email address.\n\n" +
				"If you have a new enquiry, please send it in a separate email without a ticket number in the subject line.",
			Tag: models.EmailTagUnknown,
		}
	case ReasonUnknownSender:
		fallthrough
	default:
		return Response{
			Heading: "Email address not recognised.",
			Body: "This mailbox is only for use by parents and carers of current students, and we do not have your email address in our records.\n\n" +
				"If you have an enquiry, please contact reception.",
			Tag: models.EmailTagUnknown,
		}
	}
}
