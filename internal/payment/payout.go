package payment

// 手数料率（パーセント）。プレミアム出品は高率が適用される。
const (
	PremiumFeePercent  = 20
	StandardFeePercent = 5
)

// Fee は商品合計額に対するプラットフォーム手数料を計算する。
// 金額は最小通貨単位で、端数は切り捨てる。
func Fee(total int64, premium bool) int64 {
	if premium {
		return total * PremiumFeePercent / 100
	}
	return total * StandardFeePercent / 100
}

// TransferAmount は手数料控除後の出品者への送金額を計算する。
func TransferAmount(price, quantity int64, premium bool) (amount, fee int64) {
	total := price * quantity
	fee = Fee(total, premium)
	return total - fee, fee
}
