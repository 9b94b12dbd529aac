package sqlinline

const QSelectBalance = `--sql c9f85d22-2532-4090-a74a-6921b94cdf1c
select balance
from point_balances
where user_id = $1::uuid;
`

const QListTransactions = `--sql 9e876c9d-a4b4-46f4-9bfd-8dfb32d3f951
select id, user_id, type, amount, balance_after, description, created_at
from point_transactions
where user_id = $1::uuid
order by created_at desc, id desc
limit $2::int;
`
