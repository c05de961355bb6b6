package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-research/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-research/internal/strategy Strategy
