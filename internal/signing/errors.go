package signing

import "errors"

// ErrSigningFailed reports that the signing bridge could not produce a signature.
var ErrSigningFailed = errors.New("signing failed")
