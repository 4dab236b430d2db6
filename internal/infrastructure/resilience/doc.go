/*
Package resilience guards the control plane against runs that keep stalling.

A run that hits its timeout holds a core per stage for the whole timeout. When
several runs in a row time out, the host is usually overloaded and further
runs will stall the same way. The Guard counts consecutive failures and, once
Trip is reached, refuses runs with ErrGuardOpen for Cooldown. After that a
single trial run is admitted; its outcome closes or reopens the guard.

	Closed --[Trip failures]-> Open --[Cooldown]-> Trial --[success]-> Closed
	                                                  |
	                                              [failure]
	                                                  v
	                                                Open

Errors that IsFailure rejects, such as invalid parameters, leave the state
unchanged.
*/
package resilience
