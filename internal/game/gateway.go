package game

// Outbound event names.
const (
	EventUserJoined      = "userJoined"
	EventStartGame       = "startGame"
	EventNewTurn         = "newTurn"
	EventTimerTick       = "timerTick"
	EventScoreUpdated    = "scoreUpdated"
	EventWordGuessed     = "wordGuessed"
	EventChatMessage     = "chatMessage"
	EventSystemMessage   = "systemMessage"
	EventEndGame         = "endGame"
	EventNewWord         = "new-word"
	EventSecretWord      = "secretWord"
	EventMessageRejected = "messageRejected"
)

type Emitter interface {
	Emit(event string, payload any)
}

// Gateway addresses either every connection in a game or one connection.
type Gateway interface {
	ToGame(gameID string) Emitter
	ToSocket(socketID string) Emitter
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, any) {}

// NopGateway drops everything. Useful when no transport is attached.
type NopGateway struct{}

func (NopGateway) ToGame(string) Emitter   { return nopEmitter{} }
func (NopGateway) ToSocket(string) Emitter { return nopEmitter{} }
