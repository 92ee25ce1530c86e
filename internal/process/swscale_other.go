//go:build !linux

package process

import (
	"waycast/internal/model"
	"waycast/internal/werrors"
)

func generalProcess(model.Frame, Options) (model.Frame, error) {
	return model.Frame{}, werrors.Newf(werrors.KindColorspaceConversion, "general conversion path requires linux (libswscale)")
}
