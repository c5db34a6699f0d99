package worker

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so identical requests produce
// identical bytes on the wire.
var encMode cbor.EncMode

// decMode ignores unknown fields so model processes can add diagnostics
// without breaking older servers.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("worker: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("worker: CBOR decoder initialization failed: " + err.Error())
	}
}

// Operations understood by the model process
const (
	opFaces   = "faces"
	opObjects = "objects"
)

// request is one inference call
type request struct {
	Op    string `cbor:"op"`
	Image []byte `cbor:"image"` // JPEG
}

// response is the model process reply. A non-empty Error means the call
// failed inside the model process.
type response struct {
	Error   string         `cbor:"error,omitempty"`
	Faces   []faceResult   `cbor:"faces,omitempty"`
	Objects []objectResult `cbor:"objects,omitempty"`
}

type faceResult struct {
	Box       [4]int    `cbor:"box"` // left, top, right, bottom
	Embedding []float64 `cbor:"embedding"`
}

type objectResult struct {
	ClassID    int     `cbor:"class_id"`
	ClassName  string  `cbor:"class_name"`
	Confidence float64 `cbor:"confidence"`
	Box        [4]int  `cbor:"box"`
}
