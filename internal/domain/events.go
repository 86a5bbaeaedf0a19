package domain

// UserStateChanged announces a presence transition.
type UserStateChanged struct {
	UserID int64
	State  UserState
}

// UserProfileChanged tells clients to reload the whole profile of a user.
type UserProfileChanged struct {
	UserID int64
}
