package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package describes one service offering shown in the bot.
type Package struct {
	Name     string   `yaml:"name"`     // Display name, also the callback identifier.
	Price    string   `yaml:"price"`    // Formatted price, kept as text.
	Time     string   `yaml:"time"`     // Delivery estimate.
	Desc     string   `yaml:"desc"`     // One-line pitch.
	Features []string `yaml:"features"` // Bullet points for the details card.
}

// Catalog holds the ordered package list. When built from a file it can
// be reloaded in place while readers keep getting consistent snapshots.
type Catalog struct {
	path string

	mu   sync.RWMutex
	list []Package
}

// Default returns the built-in package list.
func Default() []Package {
	return []Package{
		{
			Name:     "Мини-сайт",
			Price:    "10 000 ₽",
			Time:     "2 дня",
			Desc:     "Одна страница, один посыл. Быстрый старт.",
			Features: []string{"Лендинг из 1 экрана", "1 форма", "Адаптивность", "Хостинг 3 месяца"},
		},
		{
			Name:     "Блогер Старт",
			Price:    "25 000 ₽",
			Time:     "4 дня",
			Desc:     "Визитка в digital-пространстве.",
			Features: []string{"Сайт-визитка (4 блока)", "Соцсети", "Простая CMS", "Хостинг 1 год"},
		},
		{
			Name:     "Профи",
			Price:    "50 000 ₽",
			Time:     "5-7 дней",
			Desc:     "Инструмент для привлечения клиентов.",
			Features: []string{"Дизайн до 6 экранов", "Cal.com", "Уведомления", "Базовое SEO", "Хостинг 2 года"},
		},
		{
			Name:     "Бизнес-Лендинг",
			Price:    "75 000 ₽",
			Time:     "7-10 дней",
			Desc:     "Продающий сайт под продукт/услугу.",
			Features: []string{"Прототипирование", "2 структуры A/B", "Анимации", "Лид-магниты", "GA/Метрика", "Хостинг 3 года"},
		},
		{
			Name:     "Магазин",
			Price:    "100 000 ₽",
			Time:     "10-14 дней",
			Desc:     "Небольшой e-com под ассортимент.",
			Features: []string{"Каталог до 30", "Фильтры", "Админка заказов", "Оплата", "Интеграции", "Хостинг 3 года"},
		},
		{
			Name:     "Автоматизация",
			Price:    "125 000 ₽",
			Time:     "14-18 дней",
			Desc:     "Сайт + бот: полный цикл.",
			Features: []string{"Бот", "Корзина/оплата", "Синхронизация", "Триггеры", "Обучение", "Гарантия"},
		},
		{
			Name:     "Портфолио Pro",
			Price:    "150 000 ₽",
			Time:     "18-25 дней",
			Desc:     "Эксклюзивное представительство.",
			Features: []string{"Уникальный дизайн", "Фильтры", "Behance/Dribbble", "Блог", "SEO", "Поддержка"},
		},
		{
			Name:     "Индивидуальное решение",
			Price:    "от 200 000 ₽",
			Time:     "от 30 дней",
			Desc:     "Разработка с нуля под процессы.",
			Features: []string{"Веб-приложения", "CRM/ERP", "Нестандарт", "Анализ/UX", "SLA"},
		},
	}
}

// New builds a Catalog. An empty path uses the built-in list; otherwise
// the YAML file must load cleanly on startup.
func New(path string) (*Catalog, error) {
	c := &Catalog{path: strings.TrimSpace(path)}
	if c.path == "" {
		c.list = Default()
		return c, nil
	}
	if errReload := c.Reload(); errReload != nil {
		return nil, errReload
	}
	return c, nil
}

// Reload re-reads the YAML file and swaps in the new list atomically.
// On any failure the previous list stays in effect.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, errRead := os.ReadFile(c.path)
	if errRead != nil {
		return fmt.Errorf("catalog: read %s: %w", c.path, errRead)
	}

	// doc mirrors the YAML catalog file layout.
	type doc struct {
		Packages []Package `yaml:"packages"`
	}
	var parsed doc
	if errUnmarshal := yaml.Unmarshal(data, &parsed); errUnmarshal != nil {
		return fmt.Errorf("catalog: parse %s: %w", c.path, errUnmarshal)
	}

	list := make([]Package, 0, len(parsed.Packages))
	for _, p := range parsed.Packages {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		list = append(list, p)
	}
	if len(list) == 0 {
		return fmt.Errorf("catalog: %s has no packages", c.path)
	}

	c.mu.Lock()
	c.list = list
	c.mu.Unlock()
	return nil
}

// Packages returns a copy of the current package list in display order.
func (c *Catalog) Packages() []Package {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Package, len(c.list))
	copy(out, c.list)
	return out
}

// Find returns the package with the given name.
func (c *Catalog) Find(name string) (Package, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.list {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}
