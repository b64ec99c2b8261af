// Package pricing содержит расчёт итоговой стоимости заказа.
package pricing

// taxPercent — фиксированная ставка налога в процентах.
const taxPercent = 10

// OrderTotal считает итог по позициям заказа в целых денежных единицах.
// Цены принимаются в копейках; к каждой позиции применяется налог, суммы
// складываются, итог округляется до целой единицы по правилу "половина вверх".
func OrderTotal(priceCents []int64) int64 {
	// накапливаем в сотых долях копейки, чтобы не терять точность до округления
	var taxed int64
	for _, p := range priceCents {
		taxed += p * (100 + taxPercent)
	}
	return (taxed + 5000) / 10000
}
