package handler

import (
	"github.com/d60-Lab/blahbox/internal/repository"
	"github.com/d60-Lab/blahbox/internal/service"
)

// Handler 聚合 API 依赖
type Handler struct {
	blahs       repository.BlahRepository
	distributor *service.Distributor
	reader      *service.Reader
}

func NewHandler(blahs repository.BlahRepository, distributor *service.Distributor, reader *service.Reader) *Handler {
	return &Handler{blahs: blahs, distributor: distributor, reader: reader}
}
