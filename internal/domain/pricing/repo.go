package pricing

import "context"

type Repository interface {
	GetByServiceName(ctx context.Context, serviceName string) (*ServicePrice, error)
	List(ctx context.Context) ([]*ServicePrice, error)
	Upsert(ctx context.Context, p *ServicePrice) error
}
