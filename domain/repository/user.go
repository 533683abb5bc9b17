package repository

import (
	"context"

	"insight-hub/domain/model"
)

type IUser interface {
	GetByUserName(ctx context.Context, userName string) (model.User, error)
}
