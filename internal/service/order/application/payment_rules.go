// internal/service/order/application/payment_rules.go
package application

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"meridian/internal/contracts"
)

// PaymentRules 用一条 CEL 表达式判断订单是否免支付。
// 规则来自配置，可以在不改代码的情况下调整，例如
// `paymentMethod == "CASH"` 或 `paymentMethod == "CASH" && amount < 100.0`。
type PaymentRules struct {
	program cel.Program
}

// NewPaymentRules 编译免支付规则。表达式必须是布尔类型。
func NewPaymentRules(expression string) (*PaymentRules, error) {
	env, err := cel.NewEnv(
		cel.Variable("paymentMethod", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("userId", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile payment-free rule %q", expression)
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.Errorf("payment-free rule %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &PaymentRules{program: program}, nil
}

// PaymentFree 判断该订单是否跳过扣款步骤。规则求值失败时保守地返回
// false，让订单走正常支付链路。
func (r *PaymentRules) PaymentFree(method contracts.PaymentMethod, amount float64, userID string) bool {
	out, _, err := r.program.Eval(map[string]interface{}{
		"paymentMethod": string(method),
		"amount":        amount,
		"userId":        userID,
	})
	if err != nil {
		return false
	}
	free, ok := out.Value().(bool)
	return ok && free
}
