package server

// inbound (client) actions
const (
	actionSubscribeTable   string = "subscribe-table"
	actionUnsubscribeTable string = "unsubscribe-table"
	actionSubscribeLobby   string = "subscribe-lobby"
	actionUnsubscribeLobby string = "unsubscribe-lobby"
)

type base struct {
	// allows for correctly identifying messages
	Action string `json:"action"`
}

type subscribeTable struct {
	base           // actionSubscribeTable
	TableID string `json:"table_id"`
}

type unsubscribeTable struct {
	base           // actionUnsubscribeTable
	TableID string `json:"table_id"`
}
