package store

import "errors"

// Failure values returned by store mutators. The dispatcher maps each one to a
// platform error; stores never panic on missing keys.
var (
	ErrChatNotFound    = errors.New("store: chat not found")
	ErrUserNotFound    = errors.New("store: user not found")
	ErrMessageNotFound = errors.New("store: message not found")
	ErrInvalidSlowMode = errors.New("store: invalid slow mode delay")
	ErrNotSupergroup   = errors.New("store: chat is not a supergroup")

	ErrNotMember     = errors.New("store: user is not a member")
	ErrIsOwner       = errors.New("store: user is the chat owner")
	ErrIsAdmin       = errors.New("store: user is an administrator")
	ErrNotAdmin      = errors.New("store: user is not an administrator")
	ErrNotRestricted = errors.New("store: user is not restricted")

	ErrLinkNotFound     = errors.New("store: invite link not found")
	ErrLinkRevoked      = errors.New("store: invite link revoked")
	ErrLinkExpired      = errors.New("store: invite link expired")
	ErrLinkLimitReached = errors.New("store: invite link usage limit reached")
	ErrLinkNeedsRequest = errors.New("store: invite link requires approval")
	ErrLinkConflict     = errors.New("store: member limit and join requests are exclusive")
	ErrRequestNotFound  = errors.New("store: join request not found")

	ErrNotForum      = errors.New("store: chat is not a forum")
	ErrTopicNotFound = errors.New("store: topic not found")
	ErrGeneralTopic  = errors.New("store: general topic cannot be deleted")
	ErrTopicClosed   = errors.New("store: topic is closed")
	ErrTopicOpen     = errors.New("store: topic is not closed")

	ErrPollNotFound      = errors.New("store: poll not found")
	ErrPollClosed        = errors.New("store: poll is closed")
	ErrPollOptions       = errors.New("store: poll must have 2 to 10 options")
	ErrInvalidOption     = errors.New("store: option id out of range")
	ErrMultipleAnswers   = errors.New("store: poll allows a single answer")
	ErrQuizAnswerFinal   = errors.New("store: quiz answers cannot be changed")
	ErrQuizCorrectOption = errors.New("store: quiz needs one correct option")

	ErrQueryNotFound       = errors.New("store: query not found")
	ErrQueryAnswered       = errors.New("store: query already answered")
	ErrTransactionNotFound = errors.New("store: transaction not found")
	ErrChargeUserMismatch  = errors.New("store: charge belongs to another user")
	ErrAlreadyRefunded     = errors.New("store: charge already refunded")

	ErrFileNotFound = errors.New("store: file not found")
)
