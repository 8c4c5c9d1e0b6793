package statemachine

import "arrively-api/models"

const ActorReviewer = "reviewer"

// Verification covers driver document review. A rejected driver may resubmit.
var Verification = newMachine("driver_verification", string(models.VerificationPending),
	[]string{
		string(models.VerificationPending),
		string(models.VerificationVerified),
		string(models.VerificationRejected),
	},
	[]Transition{
		{From: string(models.VerificationPending), To: string(models.VerificationVerified), Actor: ActorReviewer},
		{From: string(models.VerificationPending), To: string(models.VerificationRejected), Actor: ActorReviewer},
		{From: string(models.VerificationRejected), To: string(models.VerificationPending), Actor: ActorDriver},
	},
)

func CanVerificationTransition(from, to models.VerificationStatus, actor string) error {
	return Verification.CanTransition(string(from), string(to), actor)
}
