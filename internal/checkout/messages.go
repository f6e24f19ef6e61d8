package checkout

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ttwixxbot/telegram-shop/internal/bridge"
	"github.com/ttwixxbot/telegram-shop/internal/order"
)

const (
	msgEmptyCart      = "Корзина пуста. Добавьте товары, чтобы оформить заказ."
	msgMissingContact = "Пожалуйста, укажите телефон и адрес доставки."
	msgInvalidOrder   = "Не удалось оформить заказ. Проверьте данные и попробуйте снова."

	confirmTitle  = "Подтверждение заказа"
	confirmButton = "Да, заказать"
)

var printer = message.NewPrinter(language.Russian)

// AlertMessage is the text shown to the user for a rejected order.
func AlertMessage(reason order.Reason) string {
	switch reason {
	case order.ReasonEmptyCart:
		return msgEmptyCart
	case order.ReasonMissingContact:
		return msgMissingContact
	default:
		return msgInvalidOrder
	}
}

// FormatPrice renders an amount in rubles with Russian digit grouping.
func FormatPrice(amount int64) string {
	return printer.Sprintf("%d ₽", amount)
}

func confirmPopup(itemCount int, total int64) bridge.Popup {
	return bridge.Popup{
		Title:   confirmTitle,
		Message: printer.Sprintf("Вы уверены, что хотите заказать %d шт. за %s?", itemCount, FormatPrice(total)),
		Buttons: []bridge.PopupButton{
			{ID: bridge.ConfirmButtonID, Type: "default", Text: confirmButton},
			{Type: "cancel"},
		},
	}
}
