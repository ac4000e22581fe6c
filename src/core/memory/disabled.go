package memory

import "context"

// Disabled 未配置嵌入模型时使用的空实现，对话仍可正常进行
type Disabled struct{}

func (Disabled) AddMessage(ctx context.Context, text, role string) error { return nil }

func (Disabled) Query(ctx context.Context, prompt string, topK int, role string) ([]Record, error) {
	return nil, nil
}

func (Disabled) Recent(ctx context.Context, count int, role string) ([]Record, error) {
	return nil, nil
}

func (Disabled) Count(ctx context.Context, role string) (int, error) { return 0, nil }

func (Disabled) Stats(ctx context.Context) (Stats, error) {
	return Stats{CollectionName: DefaultCollection}, nil
}

func (Disabled) SearchKeyword(ctx context.Context, keyword string, topK int) ([]Record, error) {
	return nil, nil
}

func (Disabled) Clear(ctx context.Context) error { return nil }

func (Disabled) Enabled() bool { return false }

func (Disabled) Close() error { return nil }
