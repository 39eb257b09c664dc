package api

// loginRequest is the POST /login payload.
type loginRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// LoginUser is the user summary returned by the login endpoint. The
// bearer token may appear here instead of at the top level.
type LoginUser struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
}

// LoginResponse is the POST /login response shape.
type LoginResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token,omitempty"`
	User    *LoginUser `json:"user,omitempty"`
	Message string     `json:"message,omitempty"`
}

// RawSender is the untransformed sender shape on a raw message.
type RawSender struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// RawAttachment is the untransformed attachment shape.
type RawAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// RawMessage is a message exactly as the server returns it, before
// normalization into model.Message.
type RawMessage struct {
	ID             string          `json:"id"`
	From           *RawSender      `json:"from,omitempty"`
	Subject        string          `json:"subject"`
	Intro          string          `json:"intro"`
	CreatedAt      string          `json:"createdAt"`
	Seen           bool            `json:"seen"`
	HasAttachments bool            `json:"hasAttachments"`
	Text           string          `json:"text"`
	HTML           string          `json:"html"`
	Attachments    []RawAttachment `json:"attachments,omitempty"`
	Size           int64           `json:"size"`
}

// MessagesResponse is the GET /messages-working response shape. A nil
// Messages slice on a success-flagged response indicates a malformed
// reply and is surfaced to the caller as an error.
type MessagesResponse struct {
	Success  bool         `json:"success"`
	Messages []RawMessage `json:"messages"`
}

// OTPCode is a single extracted one-time code with its confidence rank.
type OTPCode struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

// OTPPayload is the server-side extraction result for one message.
type OTPPayload struct {
	Found    bool      `json:"found"`
	BestCode *OTPCode  `json:"bestCode,omitempty"`
	Codes    []OTPCode `json:"codes,omitempty"`
}

// OTPResponse is the GET /otp response shape.
type OTPResponse struct {
	OTP OTPPayload `json:"otp"`
}

// errorBody is the error envelope the server may attach to non-2xx
// responses; either field can carry the human-readable reason.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
