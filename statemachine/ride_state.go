package statemachine

import "arrively-api/models"

const (
	ActorDriver = "driver"
	ActorRider  = "rider"
)

var Ride = newMachine("ride", string(models.RideRequested),
	[]string{
		string(models.RideRequested),
		string(models.RideAccepted),
		string(models.RideInProgress),
		string(models.RideCompleted),
		string(models.RideCancelled),
	},
	[]Transition{
		// Driver accepts, starts and completes the trip
		{From: string(models.RideRequested), To: string(models.RideAccepted), Actor: ActorDriver},
		{From: string(models.RideAccepted), To: string(models.RideInProgress), Actor: ActorDriver},
		{From: string(models.RideInProgress), To: string(models.RideCompleted), Actor: ActorDriver},
		// Either side can cancel before the trip starts
		{From: string(models.RideRequested), To: string(models.RideCancelled), Actor: ActorDriver},
		{From: string(models.RideRequested), To: string(models.RideCancelled), Actor: ActorRider},
		{From: string(models.RideAccepted), To: string(models.RideCancelled), Actor: ActorDriver},
		{From: string(models.RideAccepted), To: string(models.RideCancelled), Actor: ActorRider},
	},
)

func CanRideTransition(from, to models.RideStatus, actor string) error {
	return Ride.CanTransition(string(from), string(to), actor)
}
