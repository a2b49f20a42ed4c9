package lwm2m

import "github.com/plgd-dev/go-coap/v3/message/codes"

// Status is the CoAP response code an object operation reports to the host.
type Status = codes.Code

const (
	Content             Status = codes.Content
	Changed             Status = codes.Changed
	BadRequest          Status = codes.BadRequest
	NotFound            Status = codes.NotFound
	MethodNotAllowed    Status = codes.MethodNotAllowed
	InternalServerError Status = codes.InternalServerError
)
