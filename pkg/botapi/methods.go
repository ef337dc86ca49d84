package botapi

// Bot API method names understood by the simulator.
const (
	// Bot
	MethodGetMe            = "getMe"
	MethodSetMyCommands    = "setMyCommands"
	MethodGetMyCommands    = "getMyCommands"
	MethodDeleteMyCommands = "deleteMyCommands"
	MethodSetWebhook       = "setWebhook"
	MethodDeleteWebhook    = "deleteWebhook"
	MethodGetWebhookInfo   = "getWebhookInfo"

	// Messages
	MethodSendMessage            = "sendMessage"
	MethodSendPhoto              = "sendPhoto"
	MethodSendDocument           = "sendDocument"
	MethodSendVideo              = "sendVideo"
	MethodSendAudio              = "sendAudio"
	MethodSendVoice              = "sendVoice"
	MethodSendAnimation          = "sendAnimation"
	MethodSendSticker            = "sendSticker"
	MethodSendLocation           = "sendLocation"
	MethodSendContact            = "sendContact"
	MethodSendDice               = "sendDice"
	MethodSendChatAction         = "sendChatAction"
	MethodForwardMessage         = "forwardMessage"
	MethodCopyMessage            = "copyMessage"
	MethodEditMessageText        = "editMessageText"
	MethodEditMessageCaption     = "editMessageCaption"
	MethodEditMessageReplyMarkup = "editMessageReplyMarkup"
	MethodDeleteMessage          = "deleteMessage"
	MethodDeleteMessages         = "deleteMessages"
	MethodPinChatMessage         = "pinChatMessage"
	MethodUnpinChatMessage       = "unpinChatMessage"
	MethodUnpinAllChatMessages   = "unpinAllChatMessages"
	MethodSetMessageReaction     = "setMessageReaction"
	MethodAnswerCallbackQuery    = "answerCallbackQuery"
	MethodAnswerInlineQuery      = "answerInlineQuery"
	MethodGetFile                = "getFile"

	// Polls
	MethodSendPoll = "sendPoll"
	MethodStopPoll = "stopPoll"

	// Chats
	MethodGetChat               = "getChat"
	MethodGetChatMember         = "getChatMember"
	MethodGetChatMemberCount    = "getChatMemberCount"
	MethodGetChatAdministrators = "getChatAdministrators"
	MethodSetChatTitle          = "setChatTitle"
	MethodSetChatDescription    = "setChatDescription"
	MethodSetChatPermissions    = "setChatPermissions"
	MethodLeaveChat             = "leaveChat"

	// Members
	MethodBanChatMember                   = "banChatMember"
	MethodUnbanChatMember                 = "unbanChatMember"
	MethodRestrictChatMember              = "restrictChatMember"
	MethodPromoteChatMember               = "promoteChatMember"
	MethodSetChatAdministratorCustomTitle = "setChatAdministratorCustomTitle"
	MethodApproveChatJoinRequest          = "approveChatJoinRequest"
	MethodDeclineChatJoinRequest          = "declineChatJoinRequest"

	// Invite links
	MethodExportChatInviteLink = "exportChatInviteLink"
	MethodCreateChatInviteLink = "createChatInviteLink"
	MethodEditChatInviteLink   = "editChatInviteLink"
	MethodRevokeChatInviteLink = "revokeChatInviteLink"

	// Forum
	MethodCreateForumTopic        = "createForumTopic"
	MethodEditForumTopic          = "editForumTopic"
	MethodCloseForumTopic         = "closeForumTopic"
	MethodReopenForumTopic        = "reopenForumTopic"
	MethodDeleteForumTopic        = "deleteForumTopic"
	MethodCloseGeneralForumTopic  = "closeGeneralForumTopic"
	MethodReopenGeneralForumTopic = "reopenGeneralForumTopic"
	MethodEditGeneralForumTopic   = "editGeneralForumTopic"

	// Payments
	MethodSendInvoice            = "sendInvoice"
	MethodCreateInvoiceLink      = "createInvoiceLink"
	MethodAnswerPreCheckoutQuery = "answerPreCheckoutQuery"
	MethodAnswerShippingQuery    = "answerShippingQuery"
	MethodGetStarTransactions    = "getStarTransactions"
	MethodRefundStarPayment      = "refundStarPayment"

	// Passport
	MethodSetPassportDataErrors = "setPassportDataErrors"
)
