package errs

// API error codes. 1xxx user/auth, 2xxx friends, 3xxx chat, 4xxx status.
var (
	ErrArgs            = NewCodeError(1001, "bad request args")
	ErrTokenInvalid    = NewCodeError(1002, "token invalid")
	ErrTokenExpired    = NewCodeError(1003, "token expired")
	ErrUserNotFound    = NewCodeError(1004, "user not found")
	ErrAlreadyFriends  = NewCodeError(2001, "already friends")
	ErrRequestExists   = NewCodeError(2002, "friend request already sent")
	ErrRequestNotFound = NewCodeError(2003, "friend request not found")
	ErrMessageNotFound = NewCodeError(3001, "message not found")
	ErrStatusNotFound  = NewCodeError(4001, "status not found")
)
