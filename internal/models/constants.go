package models

const (
	// UsernameMinLength and friends bound credential input on the server
	// side. The limits match the on-disk record format.
	UsernameMinLength = 2
	UsernameMaxLength = 16
	PasswordMinLength = 4
	PasswordMaxLength = 32

	// ReservationCodeLength is the number of characters in a booking code.
	ReservationCodeLength = 5

	// DefaultYear is the calendar year all dd/mm dates belong to.
	DefaultYear = 2020

	// DefaultCapacity is the fallback number of rooms when config omits it.
	DefaultCapacity = 10

	// DefaultWorkers is the fallback worker-pool size.
	DefaultWorkers = 4

	// LoginAttemptLimit is how many failed logins per username are allowed
	// within LoginAttemptWindow seconds before further attempts are refused.
	LoginAttemptLimit  = 5
	LoginAttemptWindow = 60
)
