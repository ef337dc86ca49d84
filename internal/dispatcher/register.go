package dispatcher

import "github.com/nextlevelbuilder/botsim/pkg/botapi"

// registerMethods binds every supported Bot API method to its handler.
func (s *Server) registerMethods() {
	r := s.router

	// Bot
	r.Register(botapi.MethodGetMe, s.handleGetMe)
	r.Register(botapi.MethodSetMyCommands, s.handleSetMyCommands)
	r.Register(botapi.MethodGetMyCommands, s.handleGetMyCommands)
	r.Register(botapi.MethodDeleteMyCommands, s.handleDeleteMyCommands)
	r.Register(botapi.MethodSetWebhook, s.handleSetWebhook)
	r.Register(botapi.MethodDeleteWebhook, s.handleDeleteWebhook)
	r.Register(botapi.MethodGetWebhookInfo, s.handleGetWebhookInfo)

	// Messages
	r.Register(botapi.MethodSendMessage, s.handleSendMessage)
	for method := range mediaMethods {
		r.Register(method, s.sendMedia(method))
	}
	r.Register(botapi.MethodSendLocation, s.handleSendLocation)
	r.Register(botapi.MethodSendContact, s.handleSendContact)
	r.Register(botapi.MethodSendDice, s.handleSendDice)
	r.Register(botapi.MethodSendChatAction, s.handleSendChatAction)
	r.Register(botapi.MethodForwardMessage, s.handleForwardMessage)
	r.Register(botapi.MethodCopyMessage, s.handleCopyMessage)
	r.Register(botapi.MethodEditMessageText, s.handleEditMessageText)
	r.Register(botapi.MethodEditMessageCaption, s.handleEditMessageCaption)
	r.Register(botapi.MethodEditMessageReplyMarkup, s.handleEditMessageReplyMarkup)
	r.Register(botapi.MethodDeleteMessage, s.handleDeleteMessage)
	r.Register(botapi.MethodDeleteMessages, s.handleDeleteMessages)
	r.Register(botapi.MethodPinChatMessage, s.handlePinChatMessage)
	r.Register(botapi.MethodUnpinChatMessage, s.handleUnpinChatMessage)
	r.Register(botapi.MethodUnpinAllChatMessages, s.handleUnpinAllChatMessages)
	r.Register(botapi.MethodSetMessageReaction, s.handleSetMessageReaction)
	r.Register(botapi.MethodAnswerCallbackQuery, s.handleAnswerCallbackQuery)
	r.Register(botapi.MethodAnswerInlineQuery, s.handleAnswerInlineQuery)
	r.Register(botapi.MethodGetFile, s.handleGetFile)

	// Polls
	r.Register(botapi.MethodSendPoll, s.handleSendPoll)
	r.Register(botapi.MethodStopPoll, s.handleStopPoll)

	// Chats
	r.Register(botapi.MethodGetChat, s.handleGetChat)
	r.Register(botapi.MethodGetChatMember, s.handleGetChatMember)
	r.Register(botapi.MethodGetChatMemberCount, s.handleGetChatMemberCount)
	r.Register(botapi.MethodGetChatAdministrators, s.handleGetChatAdministrators)
	r.Register(botapi.MethodSetChatTitle, s.handleSetChatTitle)
	r.Register(botapi.MethodSetChatDescription, s.handleSetChatDescription)
	r.Register(botapi.MethodSetChatPermissions, s.handleSetChatPermissions)
	r.Register(botapi.MethodLeaveChat, s.handleLeaveChat)

	// Members
	r.Register(botapi.MethodBanChatMember, s.handleBanChatMember)
	r.Register(botapi.MethodUnbanChatMember, s.handleUnbanChatMember)
	r.Register(botapi.MethodRestrictChatMember, s.handleRestrictChatMember)
	r.Register(botapi.MethodPromoteChatMember, s.handlePromoteChatMember)
	r.Register(botapi.MethodSetChatAdministratorCustomTitle, s.handleSetChatAdministratorCustomTitle)
	r.Register(botapi.MethodApproveChatJoinRequest, s.handleApproveChatJoinRequest)
	r.Register(botapi.MethodDeclineChatJoinRequest, s.handleDeclineChatJoinRequest)

	// Invite links
	r.Register(botapi.MethodExportChatInviteLink, s.handleExportChatInviteLink)
	r.Register(botapi.MethodCreateChatInviteLink, s.handleCreateChatInviteLink)
	r.Register(botapi.MethodEditChatInviteLink, s.handleEditChatInviteLink)
	r.Register(botapi.MethodRevokeChatInviteLink, s.handleRevokeChatInviteLink)

	// Forum
	r.Register(botapi.MethodCreateForumTopic, s.handleCreateForumTopic)
	r.Register(botapi.MethodEditForumTopic, s.handleEditForumTopic)
	r.Register(botapi.MethodCloseForumTopic, s.handleCloseForumTopic)
	r.Register(botapi.MethodReopenForumTopic, s.handleReopenForumTopic)
	r.Register(botapi.MethodDeleteForumTopic, s.handleDeleteForumTopic)
	r.Register(botapi.MethodCloseGeneralForumTopic, s.handleCloseGeneralForumTopic)
	r.Register(botapi.MethodReopenGeneralForumTopic, s.handleReopenGeneralForumTopic)
	r.Register(botapi.MethodEditGeneralForumTopic, s.handleEditGeneralForumTopic)

	// Payments
	r.Register(botapi.MethodSendInvoice, s.handleSendInvoice)
	r.Register(botapi.MethodCreateInvoiceLink, s.handleCreateInvoiceLink)
	r.Register(botapi.MethodAnswerPreCheckoutQuery, s.handleAnswerPreCheckoutQuery)
	r.Register(botapi.MethodAnswerShippingQuery, s.handleAnswerShippingQuery)
	r.Register(botapi.MethodGetStarTransactions, s.handleGetStarTransactions)
	r.Register(botapi.MethodRefundStarPayment, s.handleRefundStarPayment)

	// Passport
	r.Register(botapi.MethodSetPassportDataErrors, s.handleSetPassportDataErrors)
}
