package service_test

import (
	"os"
	"time"

	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

var fixedNow = time.Date(2025, time.March, 4, 9, 30, 0, 0, time.UTC)

func newTestCustomizer() *service.Customizer {
	c := service.NewCustomizer(nil)
	c.Now = func() time.Time { return fixedNow }
	return c
}

func contact(fields map[string]string) model.Contact {
	return model.NewContact(fields)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
