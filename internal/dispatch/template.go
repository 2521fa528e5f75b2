package dispatch

import "fmt"

// PaymentMethod is the fixed payment note included in every order.
const PaymentMethod = "Dinheiro"

// FormatOrderMessage renders the order request sent to a pharmacy.
func FormatOrderMessage(pharmacyName, drugName, userAddress string) string {
	return fmt.Sprintf("*Mensagem Automática - Assistente Virtual para Idosos*\n\n"+
		"Olá, %s!\n\n"+
		"Estou ajudando um(a) idoso(a) que necessita do seguinte medicamento:\n\n"+
		"💊 *Medicamento solicitado:* %s\n\n"+
		"📍 *Endereço para entrega:* %s\n\n"+
		"💵 *Forma de pagamento:* %s\n\n"+
		"Por favor, nos informe:\n"+
		"1. Se possuem este medicamento em estoque\n"+
		"2. Valor total com entrega (se aplicável)\n"+
		"3. Tempo estimado para entrega\n\n"+
		"*Se puderem atender este pedido, por favor responda com \"SIM\".*\n\n"+
		"Agradecemos pela atenção!",
		pharmacyName, drugName, userAddress, PaymentMethod)
}
