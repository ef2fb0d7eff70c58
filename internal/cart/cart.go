// Package cart реализует полностью локальное состояние корзины.
// Корзина — простейший экземпляр общего паттерна представления:
// синхронные операции без обращения к шлюзу, производные итоги
// пересчитываются из списка позиций после каждой операции.
package cart

import (
	"sync"

	"github.com/mmeshcher/bookingsync-system/internal/model"
)

// Cart хранит позиции корзины и выдаёт согласованные снимки состояния.
type Cart struct {
	mu    sync.Mutex
	items []model.CartItem
}

// New создаёт пустую корзину.
func New() *Cart {
	return &Cart{}
}

// State возвращает текущее состояние корзины с пересчитанными итогами.
func (c *Cart) State() model.CartState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return recompute(c.items)
}

// Add добавляет позицию: существующий идентификатор увеличивает
// количество на единицу, новый — добавляется с количеством 1.
func (c *Cart) Add(item model.CartItem) model.CartState {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i].Quantity++
			return recompute(c.items)
		}
	}

	item.Quantity = 1
	c.items = append(c.items, item)
	return recompute(c.items)
}

// Remove удаляет все позиции с указанным идентификатором.
// Отсутствующий идентификатор — не ошибка.
func (c *Cart) Remove(id string) model.CartState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = removeID(c.items, id)
	return recompute(c.items)
}

// SetQuantity устанавливает количество позиции. Неположительное
// количество эквивалентно удалению позиции.
func (c *Cart) SetQuantity(id string, quantity int) model.CartState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		c.items = removeID(c.items, id)
		return recompute(c.items)
	}

	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity = quantity
			break
		}
	}
	return recompute(c.items)
}

// Clear опустошает корзину.
func (c *Cart) Clear() model.CartState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	return recompute(c.items)
}

func removeID(items []model.CartItem, id string) []model.CartItem {
	res := items[:0]
	for _, it := range items {
		if it.ID != id {
			res = append(res, it)
		}
	}
	return res
}

// recompute строит состояние корзины заново: итоговая сумма и число
// позиций всегда выводятся из списка, а не корректируются инкрементально.
func recompute(items []model.CartItem) model.CartState {
	state := model.CartState{
		Items: make([]model.CartItem, len(items)),
	}
	copy(state.Items, items)

	for _, it := range items {
		state.Total += it.Price * float64(it.Quantity)
		state.ItemCount += it.Quantity
	}

	return state
}
