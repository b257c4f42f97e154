package allocation

// SplitImpactPoints は集計値totalを数量quantity分の単位クレームに分配する。
//
// 分配ポリシー: 先頭のquantity-1件には total/quantity を割り当て、
// 最後の1件には残余 total - (quantity-1)*(total/quantity) を割り当てる。
// これにより各シェアの合計はfloat64演算上も元の集計値と厳密に一致し、
// 単純な等分で生じる丸め誤差による保存則の破れを避ける。
//
// totalがnil（未確定）の場合は全シェアがnilになる。0ではなく、
// 「まだ受け取られていない」という意味を保存する。
func SplitImpactPoints(total *float64, quantity int) []*float64 {
	shares := make([]*float64, quantity)
	if total == nil {
		return shares
	}

	share := *total / float64(quantity)
	for i := 0; i < quantity-1; i++ {
		v := share
		shares[i] = &v
	}
	last := *total - share*float64(quantity-1)
	shares[quantity-1] = &last

	return shares
}
