package statemachine

import "arrively-api/models"

const (
	ActorUser  = "user"
	ActorAgent = "agent"
)

var Ticket = newMachine("support_ticket", string(models.TicketOpen),
	[]string{
		string(models.TicketOpen),
		string(models.TicketInProgress),
		string(models.TicketResolved),
		string(models.TicketClosed),
	},
	[]Transition{
		// Support agent works the ticket
		{From: string(models.TicketOpen), To: string(models.TicketInProgress), Actor: ActorAgent},
		{From: string(models.TicketInProgress), To: string(models.TicketResolved), Actor: ActorAgent},
		{From: string(models.TicketInProgress), To: string(models.TicketClosed), Actor: ActorAgent},
		{From: string(models.TicketResolved), To: string(models.TicketClosed), Actor: ActorAgent},
		// The reporter can withdraw, confirm or reopen
		{From: string(models.TicketOpen), To: string(models.TicketClosed), Actor: ActorUser},
		{From: string(models.TicketInProgress), To: string(models.TicketClosed), Actor: ActorUser},
		{From: string(models.TicketResolved), To: string(models.TicketClosed), Actor: ActorUser},
		{From: string(models.TicketResolved), To: string(models.TicketInProgress), Actor: ActorUser},
	},
)

func CanTicketTransition(from, to models.TicketStatus, actor string) error {
	return Ticket.CanTransition(string(from), string(to), actor)
}
